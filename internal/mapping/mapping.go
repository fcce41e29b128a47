// Package mapping binds the logical fields of a sale (email, name,
// transaction id, address parts...) to the literal column headers of a
// platform's CSV export. Fixed tables cover the known platforms; uploads
// from anywhere else go through keyword detection plus manual override.
package mapping

// Field is a logical sale field. The set is closed; StatusFilter is special:
// it holds the paid-status literal to match, not a header name.
type Field string

const (
	FieldEmail         Field = "email"
	FieldName          Field = "name"
	FieldPhone         Field = "phone"
	FieldTaxID         Field = "taxId"
	FieldProduct       Field = "product"
	FieldTransactionID Field = "transactionId"
	FieldTotal         Field = "total"
	FieldDate          Field = "date"
	FieldStatus        Field = "status"
	FieldStatusFilter  Field = "statusFilter"
	FieldZip           Field = "zip"
	FieldAddress       Field = "address"
	FieldNumber        Field = "number"
	FieldComplement    Field = "complement"
	FieldNeighborhood  Field = "neighborhood"
	FieldCity          Field = "city"
	FieldState         Field = "state"
)

// ColumnMapping holds, per logical field, the CSV header that carries it.
// Empty means unbound. StatusFilter is the paid sentinel value compared
// against the status column, never a header.
type ColumnMapping struct {
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Phone         string `json:"phone,omitempty"`
	TaxID         string `json:"taxId,omitempty"`
	Product       string `json:"product,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	Total         string `json:"total,omitempty"`
	Date          string `json:"date,omitempty"`
	Status        string `json:"status,omitempty"`
	StatusFilter  string `json:"statusFilter,omitempty"`
	Zip           string `json:"zip,omitempty"`
	Address       string `json:"address,omitempty"`
	Number        string `json:"number,omitempty"`
	Complement    string `json:"complement,omitempty"`
	Neighborhood  string `json:"neighborhood,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
}

// Header returns the CSV header bound to the field ("" when unbound).
func (m ColumnMapping) Header(f Field) string {
	switch f {
	case FieldEmail:
		return m.Email
	case FieldName:
		return m.Name
	case FieldPhone:
		return m.Phone
	case FieldTaxID:
		return m.TaxID
	case FieldProduct:
		return m.Product
	case FieldTransactionID:
		return m.TransactionID
	case FieldTotal:
		return m.Total
	case FieldDate:
		return m.Date
	case FieldStatus:
		return m.Status
	case FieldZip:
		return m.Zip
	case FieldAddress:
		return m.Address
	case FieldNumber:
		return m.Number
	case FieldComplement:
		return m.Complement
	case FieldNeighborhood:
		return m.Neighborhood
	case FieldCity:
		return m.City
	case FieldState:
		return m.State
	}
	return ""
}

func (m *ColumnMapping) bind(f Field, header string) {
	switch f {
	case FieldEmail:
		m.Email = header
	case FieldName:
		m.Name = header
	case FieldPhone:
		m.Phone = header
	case FieldTaxID:
		m.TaxID = header
	case FieldProduct:
		m.Product = header
	case FieldTransactionID:
		m.TransactionID = header
	case FieldTotal:
		m.Total = header
	case FieldDate:
		m.Date = header
	case FieldStatus:
		m.Status = header
	case FieldZip:
		m.Zip = header
	case FieldAddress:
		m.Address = header
	case FieldNumber:
		m.Number = header
	case FieldComplement:
		m.Complement = header
	case FieldNeighborhood:
		m.Neighborhood = header
	case FieldCity:
		m.City = header
	case FieldState:
		m.State = header
	}
}

// headerFields lists every field whose value is a header name, in detection
// priority order. StatusFilter is excluded: it is a literal, not a header.
func headerFields() []Field {
	return []Field{
		FieldEmail,
		FieldName,
		FieldTransactionID,
		FieldStatus,
		FieldTotal,
		FieldPhone,
		FieldTaxID,
		FieldProduct,
		FieldDate,
		FieldZip,
		FieldAddress,
		FieldNumber,
		FieldComplement,
		FieldNeighborhood,
		FieldCity,
		FieldState,
	}
}

// Validation is the outcome of checking a mapping against the headers of the
// file it will be applied to. Import must not start while Valid is false.
type Validation struct {
	Valid         bool     `json:"valid"`
	MissingFields []string `json:"missingFields"`
}

// requiredImportFields must be bound before a CRM import runs.
var requiredImportFields = []Field{FieldEmail, FieldName, FieldTransactionID}

// requiredLabelFields must be bound before label generation runs.
var requiredLabelFields = []Field{FieldTransactionID, FieldName, FieldZip}

// ValidateImport checks the mapping for a CRM import: email, name,
// transactionId and the paid sentinel are mandatory, and every bound header
// must exist in the file.
func ValidateImport(m ColumnMapping, headers []string) Validation {
	return validate(m, headers, requiredImportFields, true)
}

// ValidateLabels checks the mapping for label generation: transactionId,
// name and zip are mandatory, and every bound header must exist in the file.
func ValidateLabels(m ColumnMapping, headers []string) Validation {
	return validate(m, headers, requiredLabelFields, false)
}

func validate(m ColumnMapping, headers []string, required []Field, needSentinel bool) Validation {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}

	isRequired := make(map[Field]bool, len(required))
	for _, f := range required {
		isRequired[f] = true
	}

	var missing []string
	for _, f := range headerFields() {
		header := m.Header(f)
		if header == "" {
			if isRequired[f] {
				missing = append(missing, string(f))
			}
			continue
		}
		// bound headers must exist in the file, optional fields included
		if !present[header] {
			missing = append(missing, string(f))
		}
	}
	if needSentinel && m.StatusFilter == "" {
		missing = append(missing, string(FieldStatusFilter))
	}

	return Validation{Valid: len(missing) == 0, MissingFields: missing}
}
