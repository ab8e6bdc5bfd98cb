package importer

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/production_backend/models"
	"bitbucket.org/mmdatafocus/production_backend/utils"
	"github.com/shopspring/decimal"
)

// Material-usage exports are semicolon-delimited with a record-type prefix
// per line, one order per file:
//
//	KOPF;1001-a;Mustermann GmbH
//	POS;1;Fenster 2-flg;1200;1400;2
//	GLAS;1;Float 4mm;560;1300;4
//	MAT;P-8845;Rahmenprofil 70mm;m;24.5
//	ART;A-1001;Fenster komplett;2;349.00
const (
	recHeader   = "KOPF"
	recUnit     = "POS"
	recGlazing  = "GLAS"
	recMaterial = "MAT"
	recLineItem = "ART"
	recPrice    = "PREIS"
)

// DetectFileKind classifies an uploaded file by extension and content. The
// mime hint is only a tiebreaker; the header line decides.
func DetectFileKind(fileName string, data []byte, mimeHint string) models.ImportFileKind {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == ".xlsx" {
		return models.FileKindPriceDocument
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	trimmed := strings.TrimLeft(string(head), " \t\r\n\uFEFF")
	switch {
	case strings.HasPrefix(trimmed, recHeader+";"):
		return models.FileKindMaterialUsage
	case strings.HasPrefix(trimmed, recPrice+";"):
		return models.FileKindPriceDocument
	}

	if strings.Contains(mimeHint, "spreadsheet") {
		return models.FileKindPriceDocument
	}
	return models.FileKindUnknown
}

// ParseMaterialUsageFile reads and parses a stored material-usage file. It is
// idempotent and never touches the database.
func ParseMaterialUsageFile(path string) (*ParsedOrder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{File: filepath.Base(path), Message: err.Error()}
	}
	return ParseMaterialUsage(filepath.Base(path), data)
}

func ParseMaterialUsage(fileName string, data []byte) (*ParsedOrder, error) {
	parsed := &ParsedOrder{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ";")
		switch fields[0] {
		case recHeader:
			if len(fields) < 2 || strings.TrimSpace(fields[1]) == "" {
				return nil, &ParseError{File: fileName, Line: lineNo, Message: "header without order number"}
			}
			if parsed.OrderNumber != "" {
				return nil, &ParseError{File: fileName, Line: lineNo, Message: "duplicate header record"}
			}
			parsed.OrderNumber = utils.NormalizeOrderNumber(fields[1])
			if len(fields) > 2 {
				parsed.CustomerName = strings.TrimSpace(fields[2])
			}
		case recUnit:
			unit, perr := parseUnit(fileName, lineNo, fields)
			if perr != nil {
				return nil, perr
			}
			parsed.Units = append(parsed.Units, *unit)
		case recGlazing:
			glazing, perr := parseGlazing(fileName, lineNo, fields)
			if perr != nil {
				return nil, perr
			}
			parsed.GlazingItems = append(parsed.GlazingItems, *glazing)
		case recMaterial:
			mat, perr := parseMaterial(fileName, lineNo, fields)
			if perr != nil {
				return nil, perr
			}
			parsed.MaterialLines = append(parsed.MaterialLines, *mat)
		case recLineItem:
			item, perr := parseLineItem(fileName, lineNo, fields)
			if perr != nil {
				return nil, perr
			}
			parsed.LineItems = append(parsed.LineItems, *item)
		default:
			return nil, &ParseError{File: fileName, Line: lineNo, Message: "unknown record type " + strconv.Quote(fields[0])}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{File: fileName, Message: err.Error()}
	}
	if parsed.OrderNumber == "" {
		return nil, &ParseError{File: fileName, Message: "missing KOPF header record"}
	}
	return parsed, nil
}

func parseUnit(file string, line int, fields []string) (*ParsedUnit, *ParseError) {
	if len(fields) < 6 {
		return nil, &ParseError{File: file, Line: line, Message: "POS record needs 6 fields"}
	}
	pos, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return nil, &ParseError{File: file, Line: line, Message: "invalid position: " + fields[1]}
	}
	width, height, perr := parseDimensions(file, line, fields[3], fields[4])
	if perr != nil {
		return nil, perr
	}
	qty, err := parseQuantity(fields[5])
	if err != nil {
		return nil, &ParseError{File: file, Line: line, Message: "invalid quantity: " + fields[5]}
	}
	return &ParsedUnit{
		Position:    pos,
		Description: strings.TrimSpace(fields[2]),
		WidthMm:     width,
		HeightMm:    height,
		Quantity:    qty,
	}, nil
}

func parseGlazing(file string, line int, fields []string) (*ParsedGlazing, *ParseError) {
	if len(fields) < 6 {
		return nil, &ParseError{File: file, Line: line, Message: "GLAS record needs 6 fields"}
	}
	pos, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return nil, &ParseError{File: file, Line: line, Message: "invalid position: " + fields[1]}
	}
	width, height, perr := parseDimensions(file, line, fields[3], fields[4])
	if perr != nil {
		return nil, perr
	}
	qty, err := parseQuantity(fields[5])
	if err != nil {
		return nil, &ParseError{File: file, Line: line, Message: "invalid quantity: " + fields[5]}
	}
	return &ParsedGlazing{
		Position:  pos,
		GlassType: strings.TrimSpace(fields[2]),
		WidthMm:   width,
		HeightMm:  height,
		Quantity:  qty,
	}, nil
}

func parseMaterial(file string, line int, fields []string) (*ParsedMaterialLine, *ParseError) {
	if len(fields) < 5 {
		return nil, &ParseError{File: file, Line: line, Message: "MAT record needs 5 fields"}
	}
	code := strings.TrimSpace(fields[1])
	if code == "" {
		return nil, &ParseError{File: file, Line: line, Message: "MAT record without article code"}
	}
	qty, err := parseQuantity(fields[4])
	if err != nil {
		return nil, &ParseError{File: file, Line: line, Message: "invalid quantity: " + fields[4]}
	}
	return &ParsedMaterialLine{
		ArticleCode: code,
		Description: strings.TrimSpace(fields[2]),
		Unit:        strings.TrimSpace(fields[3]),
		Quantity:    qty,
	}, nil
}

func parseLineItem(file string, line int, fields []string) (*ParsedLineItem, *ParseError) {
	if len(fields) < 5 {
		return nil, &ParseError{File: file, Line: line, Message: "ART record needs 5 fields"}
	}
	code := strings.TrimSpace(fields[1])
	qty, err := parseQuantity(fields[3])
	if err != nil {
		return nil, &ParseError{File: file, Line: line, Message: "invalid quantity: " + fields[3]}
	}
	price, err := parseQuantity(fields[4])
	if err != nil {
		return nil, &ParseError{File: file, Line: line, Message: "invalid price: " + fields[4]}
	}
	return &ParsedLineItem{
		ArticleCode: code,
		Description: strings.TrimSpace(fields[2]),
		Quantity:    qty,
		UnitPrice:   price,
	}, nil
}

func parseDimensions(file string, line int, w, h string) (int, int, *ParseError) {
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return 0, 0, &ParseError{File: file, Line: line, Message: "invalid width: " + w}
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return 0, 0, &ParseError{File: file, Line: line, Message: "invalid height: " + h}
	}
	return width, height, nil
}

// parseQuantity accepts both "24.5" and German-style "24,5".
func parseQuantity(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	return decimal.NewFromString(s)
}
