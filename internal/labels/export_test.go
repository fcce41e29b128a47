package labels

import (
	"strings"
	"testing"
)

var exportConfig = Config{
	CarrierName:     "Correios",
	TrackingBaseURL: "https://rastreio.test/",
}

func csvLines(t *testing.T, data []byte) []string {
	t.Helper()
	s := string(data)
	if !strings.HasPrefix(s, "\xEF\xBB\xBF") {
		t.Fatal("expected UTF-8 BOM prefix")
	}
	s = strings.TrimPrefix(s, "\xEF\xBB\xBF")
	return strings.Split(strings.TrimRight(s, "\r\n"), "\r\n")
}

func TestBuildTrackingCSV_HeaderIsFixed(t *testing.T) {
	lines := csvLines(t, buildTrackingCSV(nil, exportConfig))

	want := "Código da compra,Data da compra,Produto,Responsável pela entrega,Código de rastreio,Status de envio,Link de rastreio"
	if lines[0] != want {
		t.Errorf("unexpected header:\n got %q\nwant %q", lines[0], want)
	}
}

func TestBuildTrackingCSV_MergedExpandsSharingCode(t *testing.T) {
	a := pendingOrder("T1")
	a.ProductName = "Livro"
	b := pendingOrder("T2")
	b.ProductName = "Caneca"
	merged, err := MergeOrders([]*Order{a, b}, false)
	if err != nil {
		t.Fatal(err)
	}
	mustRegister(t, merged, "PN7BR")

	lines := csvLines(t, buildTrackingCSV([]*Order{merged}, exportConfig))

	if len(lines) != 3 {
		t.Fatalf("expected header plus one row per purchase, got %d lines", len(lines))
	}
	if lines[1] != "T1,,Livro,Correios,PN7BR,Etiqueta gerada,https://rastreio.test/PN7BR" {
		t.Errorf("unexpected first row: %q", lines[1])
	}
	if lines[2] != "T2,,Caneca,Correios,PN7BR,Etiqueta gerada,https://rastreio.test/PN7BR" {
		t.Errorf("unexpected second row: %q", lines[2])
	}
}

func TestBuildTrackingCSV_MultiParcelJoinsCodes(t *testing.T) {
	o := pendingOrder("T1")
	o.PurchaseDate = "01/08/2026"
	if err := o.SetPlannedCount(2); err != nil {
		t.Fatal(err)
	}
	mustRegister(t, o, "PN1BR")
	mustRegister(t, o, "PN2BR")

	lines := csvLines(t, buildTrackingCSV([]*Order{o}, exportConfig))

	want := "T1,01/08/2026,Kit Fisico,Correios,PN1BR / PN2BR,Etiqueta gerada,https://rastreio.test/PN1BR"
	if lines[1] != want {
		t.Errorf("unexpected row:\n got %q\nwant %q", lines[1], want)
	}
}

func TestBuildTrackingCSV_PendingRowHasNoCode(t *testing.T) {
	lines := csvLines(t, buildTrackingCSV([]*Order{pendingOrder("T1")}, exportConfig))

	if lines[1] != "T1,,Kit Fisico,Correios,,Pendente," {
		t.Errorf("unexpected row: %q", lines[1])
	}
}
