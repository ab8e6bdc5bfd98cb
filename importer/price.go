package importer

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/production_backend/config"
	"bitbucket.org/mmdatafocus/production_backend/models"
	"bitbucket.org/mmdatafocus/production_backend/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ParsedPriceDocument is the parser boundary shape for price documents.
type ParsedPriceDocument struct {
	OrderNumber string
	Entries     []models.PriceEntry
}

// ParsePriceDocument handles both semicolon text ("PREIS;1001" header) and
// xlsx workbooks (order number in B1, article/price rows below).
func ParsePriceDocument(fileName string, data []byte) (*ParsedPriceDocument, error) {
	if strings.HasSuffix(strings.ToLower(fileName), ".xlsx") {
		return parsePriceXLSX(fileName, data)
	}
	return parsePriceText(fileName, data)
}

func parsePriceText(fileName string, data []byte) (*ParsedPriceDocument, error) {
	doc := &ParsedPriceDocument{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
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
		if lineNo == 1 || (doc.OrderNumber == "" && fields[0] == recPrice) {
			if fields[0] != recPrice || len(fields) < 2 || strings.TrimSpace(fields[1]) == "" {
				return nil, &ParseError{File: fileName, Line: lineNo, Message: "missing PREIS header record"}
			}
			doc.OrderNumber = utils.NormalizeOrderNumber(fields[1])
			continue
		}
		if len(fields) < 2 {
			return nil, &ParseError{File: fileName, Line: lineNo, Message: "price line needs article;price"}
		}
		price, err := parseQuantity(fields[1])
		if err != nil {
			return nil, &ParseError{File: fileName, Line: lineNo, Message: "invalid price: " + fields[1]}
		}
		doc.Entries = append(doc.Entries, models.PriceEntry{
			ArticleCode: strings.TrimSpace(fields[0]),
			UnitPrice:   price,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{File: fileName, Message: err.Error()}
	}
	if doc.OrderNumber == "" {
		return nil, &ParseError{File: fileName, Message: "missing PREIS header record"}
	}
	return doc, nil
}

func parsePriceXLSX(fileName string, data []byte) (*ParsedPriceDocument, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{File: fileName, Message: err.Error()}
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{File: fileName, Message: "workbook has no sheets"}
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{File: fileName, Message: err.Error()}
	}
	if len(rows) == 0 || len(rows[0]) < 2 || !strings.EqualFold(strings.TrimSpace(rows[0][0]), recPrice) {
		return nil, &ParseError{File: fileName, Line: 1, Message: "missing PREIS header row"}
	}

	doc := &ParsedPriceDocument{OrderNumber: utils.NormalizeOrderNumber(rows[0][1])}
	for i, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) < 2 {
			return nil, &ParseError{File: fileName, Line: i + 2, Message: "price row needs article and price columns"}
		}
		price, perr := parseQuantity(row[1])
		if perr != nil {
			return nil, &ParseError{File: fileName, Line: i + 2, Message: "invalid price: " + row[1]}
		}
		doc.Entries = append(doc.Entries, models.PriceEntry{
			ArticleCode: strings.TrimSpace(row[0]),
			UnitPrice:   price,
		})
	}
	return doc, nil
}

// processPriceDocument runs the automatic pipeline for an uploaded price
// document. Each branch is terminal: applied, queued pending the order,
// duplicate-flagged or parse-error. The ImportRecord is moved accordingly.
func processPriceDocument(ctx context.Context, db *gorm.DB, record *models.ImportRecord, data []byte) (*AutoImportOutcome, error) {
	logger := config.GetLogger()

	doc, perr := ParsePriceDocument(record.FileName, data)
	if perr != nil {
		if err := models.MarkImportProcessing(db, record.ID); err != nil {
			return nil, err
		}
		if err := models.MarkImportError(db, record.ID, perr.Error()); err != nil {
			return nil, err
		}
		return &AutoImportOutcome{Status: models.AutoImportParseError, Message: perr.Error()}, nil
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	existing, err := models.GetPriceDocumentByHash(db, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := models.MarkImportProcessing(db, record.ID); err != nil {
			return nil, err
		}
		meta := models.CompletedMeta{OrderNumber: doc.OrderNumber, AutoImportStatus: models.AutoImportDuplicate}
		if err := models.MarkImportCompleted(db, record.ID, meta); err != nil {
			return nil, err
		}
		config.LogInfo(logger, "price.go", "processPriceDocument", "duplicate", fmt.Sprintf("price document for %s already ingested (doc %d)", doc.OrderNumber, existing.ID))
		return &AutoImportOutcome{Status: models.AutoImportDuplicate, DocumentId: existing.ID}, nil
	}

	if err := models.MarkImportProcessing(db, record.ID); err != nil {
		return nil, err
	}

	var outcome AutoImportOutcome
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, oerr := models.GetOrderByNumber(tx, doc.OrderNumber)
		if oerr != nil {
			return oerr
		}

		status := models.PriceDocumentPendingOrder
		if order != nil {
			status = models.PriceDocumentApplied
		}
		priceDoc := models.PriceDocument{
			OrderNumber: doc.OrderNumber,
			ContentHash: hash,
			Status:      status,
			EntryCount:  len(doc.Entries),
		}
		if cerr := tx.Create(&priceDoc).Error; cerr != nil {
			if models.IsDuplicateKeyErr(cerr) || models.IsLockConflictErr(cerr) {
				// A concurrent upload of the same content won the hash index.
				return utils.NewConflictError(
					"price document for "+doc.OrderNumber+" was ingested concurrently", "")
			}
			return cerr
		}
		for i := range doc.Entries {
			doc.Entries[i].PriceDocumentId = priceDoc.ID
			if cerr := tx.Create(&doc.Entries[i]).Error; cerr != nil {
				return cerr
			}
		}

		if order != nil {
			if aerr := applyPriceEntries(tx, order.ID, doc.Entries); aerr != nil {
				return aerr
			}
			outcome = AutoImportOutcome{Status: models.AutoImportApplied, DocumentId: priceDoc.ID}
			return nil
		}
		outcome = AutoImportOutcome{Status: models.AutoImportPendingOrder, DocumentId: priceDoc.ID}
		return nil
	})
	if err != nil {
		if merr := models.MarkImportError(db, record.ID, err.Error()); merr != nil {
			config.LogError(logger, "price.go", "processPriceDocument", "MarkImportError", record.ID, merr)
		}
		return nil, err
	}

	meta := models.CompletedMeta{OrderNumber: doc.OrderNumber, AutoImportStatus: outcome.Status}
	if err := models.MarkImportCompleted(db, record.ID, meta); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// applyPriceEntries rewrites line item prices by article code and refreshes
// the order's derived totals.
func applyPriceEntries(tx *gorm.DB, orderId int, entries []models.PriceEntry) error {
	for _, entry := range entries {
		var items []models.OrderLineItem
		if err := tx.Where("order_id = ? AND article_code = ?", orderId, entry.ArticleCode).Find(&items).Error; err != nil {
			return err
		}
		for _, item := range items {
			total := entry.UnitPrice.Mul(item.Quantity)
			if err := tx.Model(&models.OrderLineItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
				"unit_price":  entry.UnitPrice,
				"total_price": total,
			}).Error; err != nil {
				return err
			}
		}
	}
	return models.RecomputeOrderAggregates(tx, orderId)
}

// applyPendingPriceDocuments drains queued price documents once their order
// arrives. Called from inside the apply transaction.
func applyPendingPriceDocuments(tx *gorm.DB, orderId int, orderNumber string) error {
	docs, err := models.PendingPriceDocuments(tx, orderNumber)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := applyPriceEntries(tx, orderId, doc.Entries); err != nil {
			return err
		}
		if err := tx.Model(&models.PriceDocument{}).Where("id = ?", doc.ID).
			Update("status", models.PriceDocumentApplied).Error; err != nil {
			return err
		}
	}
	return nil
}
