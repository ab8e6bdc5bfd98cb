package importer

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestParsePriceDocumentText(t *testing.T) {
	data := []byte("PREIS;1001-a\nA-1001;349,00\nA-1002;89.50\n")
	doc, err := ParsePriceDocument("preise.txt", data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if doc.OrderNumber != "1001-a" {
		t.Fatalf("expected order 1001-a, got %q", doc.OrderNumber)
	}
	if len(doc.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(doc.Entries))
	}
	if got := doc.Entries[0].UnitPrice.String(); got != "349" {
		t.Fatalf("expected comma decimal to parse as 349, got %s", got)
	}
	if doc.Entries[1].ArticleCode != "A-1002" {
		t.Fatalf("unexpected article: %q", doc.Entries[1].ArticleCode)
	}
}

func TestParsePriceDocumentTextRejectsMissingHeader(t *testing.T) {
	if _, err := ParsePriceDocument("p.txt", []byte("A-1001;349.00\n")); err == nil {
		t.Fatal("expected error without PREIS header")
	}
}

func TestParsePriceDocumentXLSX(t *testing.T) {
	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(book.SetCellValue(sheet, "A1", "PREIS"))
	must(book.SetCellValue(sheet, "B1", "2001"))
	must(book.SetCellValue(sheet, "A2", "A-1001"))
	must(book.SetCellValue(sheet, "B2", "349.00"))
	must(book.SetCellValue(sheet, "A3", "A-1002"))
	must(book.SetCellValue(sheet, "B3", "89.50"))

	var buf bytes.Buffer
	must(book.Write(&buf))

	doc, err := ParsePriceDocument("preise.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if doc.OrderNumber != "2001" {
		t.Fatalf("expected order 2001, got %q", doc.OrderNumber)
	}
	if len(doc.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(doc.Entries))
	}
	if doc.Entries[1].UnitPrice.String() != "89.5" {
		t.Fatalf("unexpected price: %s", doc.Entries[1].UnitPrice.String())
	}
}

func TestParsePriceDocumentXLSXRejectsMissingHeader(t *testing.T) {
	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	if err := book.SetCellValue(sheet, "A1", "A-1001"); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := book.Write(&buf); err != nil {
		t.Fatal(err)
	}
	if _, err := ParsePriceDocument("p.xlsx", buf.Bytes()); err == nil {
		t.Fatal("expected error without PREIS header row")
	}
}
