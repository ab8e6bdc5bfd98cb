package importer

import (
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/production_backend/models"
)

const sampleUsageFile = `KOPF;1001-a;Mustermann GmbH
POS;1;Fenster 2-flg;1200;1400;2
POS;2;Fenster 1-flg;800;1200;1
GLAS;1;Float 4mm;560;1300;4
MAT;P-8845;Rahmenprofil 70mm;m;24,5
ART;A-1001;Fenster komplett;3;349.00
`

func TestParseMaterialUsage(t *testing.T) {
	parsed, err := ParseMaterialUsage("1001-a.txt", []byte(sampleUsageFile))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.OrderNumber != "1001-a" {
		t.Fatalf("expected order number 1001-a, got %q", parsed.OrderNumber)
	}
	if parsed.CustomerName != "Mustermann GmbH" {
		t.Fatalf("unexpected customer: %q", parsed.CustomerName)
	}
	counts := parsed.Counts()
	if counts.UnitCount != 2 || counts.GlazingCount != 1 {
		t.Fatalf("expected counts 2/1, got %d/%d", counts.UnitCount, counts.GlazingCount)
	}
	if len(parsed.MaterialLines) != 1 {
		t.Fatalf("expected 1 material line, got %d", len(parsed.MaterialLines))
	}
	// German decimal comma is accepted.
	if got := parsed.MaterialLines[0].Quantity.String(); got != "24.5" {
		t.Fatalf("expected material quantity 24.5, got %s", got)
	}
	if parsed.Units[0].WidthMm != 1200 || parsed.Units[0].HeightMm != 1400 {
		t.Fatalf("unexpected unit dimensions: %+v", parsed.Units[0])
	}
}

func TestParseMaterialUsageNormalizesOrderNumber(t *testing.T) {
	parsed, err := ParseMaterialUsage("x.txt", []byte("KOPF; 1001-A ;Kunde\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.OrderNumber != "1001-a" {
		t.Fatalf("expected normalized 1001-a, got %q", parsed.OrderNumber)
	}
}

func TestParseMaterialUsageRejectsMissingHeader(t *testing.T) {
	_, err := ParseMaterialUsage("x.txt", []byte("POS;1;Fenster;1200;1400;1\n"))
	if err == nil {
		t.Fatal("expected error for file without KOPF record")
	}
	if !strings.Contains(err.Error(), "KOPF") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseMaterialUsageRejectsDuplicateHeader(t *testing.T) {
	_, err := ParseMaterialUsage("x.txt", []byte("KOPF;1001;A\nKOPF;1002;B\n"))
	if err == nil {
		t.Fatal("expected error for duplicate KOPF record")
	}
}

func TestParseMaterialUsageReportsLineNumber(t *testing.T) {
	data := "KOPF;1001;Kunde\nPOS;1;Fenster;1200;1400;zwei\n"
	_, err := ParseMaterialUsage("x.txt", []byte(data))
	perr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if perr.Line != 2 {
		t.Fatalf("expected failure on line 2, got %d", perr.Line)
	}
}

func TestDetectFileKind(t *testing.T) {
	cases := []struct {
		name     string
		fileName string
		data     string
		mime     string
		want     models.ImportFileKind
	}{
		{"usage header", "a.txt", "KOPF;1001;Kunde\n", "", models.FileKindMaterialUsage},
		{"usage header with bom", "a.txt", "\uFEFFKOPF;1001;Kunde\n", "", models.FileKindMaterialUsage},
		{"price header", "p.txt", "PREIS;2026-08;EUR\n", "", models.FileKindPriceDocument},
		{"xlsx extension", "p.xlsx", "PK..", "", models.FileKindPriceDocument},
		{"spreadsheet mime", "p.bin", "stuff", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", models.FileKindPriceDocument},
		{"garbage", "x.txt", "hello world\n", "", models.FileKindUnknown},
	}
	for _, tc := range cases {
		if got := DetectFileKind(tc.fileName, []byte(tc.data), tc.mime); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}
