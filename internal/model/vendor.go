package model

// Vendor is one extracted record. The model decides the fields; recognized
// keys get typed accessors, everything else is passed through untouched.
type Vendor map[string]any

// stringField returns the first of the given keys holding a string value.
func (v Vendor) stringField(keys ...string) string {
	for _, k := range keys {
		if s, ok := v[k].(string); ok {
			return s
		}
	}
	return ""
}

// Name returns the vendor's name, if the model emitted one.
func (v Vendor) Name() string { return v.stringField("name", "vendor_name") }

// URL returns the vendor's website, if the model emitted one.
func (v Vendor) URL() string { return v.stringField("url", "website") }

// Location returns the vendor's location, if the model emitted one.
func (v Vendor) Location() string { return v.stringField("location") }

// Description returns the vendor's description, if the model emitted one.
func (v Vendor) Description() string { return v.stringField("description") }

// Extras returns the fields outside the four conventional keys.
func (v Vendor) Extras() map[string]any {
	extras := make(map[string]any)
	for k, val := range v {
		switch k {
		case "name", "url", "location", "description":
		default:
			extras[k] = val
		}
	}
	return extras
}

// ResultSet is the accumulated, ordered collection of extracted vendors.
// It only ever grows: records are appended, never rewritten or removed.
type ResultSet struct {
	Vendors []Vendor `json:"vendors"`
}

// NewResultSet returns an empty set ready to append into.
func NewResultSet() *ResultSet {
	return &ResultSet{Vendors: []Vendor{}}
}

// Append adds vendors to the end of the set, preserving their order.
func (rs *ResultSet) Append(vendors ...Vendor) {
	rs.Vendors = append(rs.Vendors, vendors...)
}

// Len reports the number of accumulated vendors.
func (rs *ResultSet) Len() int {
	return len(rs.Vendors)
}
