package labels

import (
	"strings"

	"github.com/vendaops/console/internal/csvio"
)

// exportHeader is the exact column set the logistics partner's system
// imports; renaming or reordering breaks their side.
var exportHeader = []string{
	"Código da compra",
	"Data da compra",
	"Produto",
	"Responsável pela entrega",
	"Código de rastreio",
	"Status de envio",
	"Link de rastreio",
}

func statusDisplay(s Status) string {
	switch s {
	case StatusPending:
		return "Pendente"
	case StatusPartial:
		return "Parcialmente enviado"
	case StatusGenerated:
		return "Etiqueta gerada"
	case StatusError:
		return "Erro na postagem"
	}
	return string(s)
}

// buildTrackingCSV renders one row per original purchase. Merged orders
// expand back into their transactions, every expanded row sharing the codes
// of the single combined shipment.
func buildTrackingCSV(orders []*Order, cfg Config) []byte {
	rows := make([][]string, 0, len(orders))
	for _, o := range orders {
		codes := strings.Join(o.Labels, " / ")
		link := ""
		if len(o.Labels) > 0 && cfg.TrackingBaseURL != "" {
			link = cfg.TrackingBaseURL + o.Labels[0]
		}
		for _, txID := range o.TransactionIDs() {
			rows = append(rows, []string{
				txID,
				o.PurchaseDate,
				o.ProductNameFor(txID),
				cfg.CarrierName,
				codes,
				statusDisplay(o.Status),
				link,
			})
		}
	}
	return csvio.Encode(exportHeader, rows)
}
