package aviation

import "strings"

// PilotProfile is a known caller in the FBO's customer directory.
type PilotProfile struct {
	CustomerId  string
	Name        string
	Phone       string
	PilotName   string
	PlaneNumber string
}

// Directory resolves a caller phone number to a known pilot.
type Directory interface {
	LookupPhone(phone string) (PilotProfile, bool)
}

type staticDirectory struct {
	byPhone map[string]PilotProfile
}

// NewStaticDirectory indexes profiles by normalized phone number.
func NewStaticDirectory(profiles []PilotProfile) Directory {
	d := &staticDirectory{byPhone: make(map[string]PilotProfile, len(profiles))}
	for _, p := range profiles {
		d.byPhone[NormalizePhone(p.Phone)] = p
	}
	return d
}

// DefaultDirectory is the demo customer book.
func DefaultDirectory() Directory {
	return NewStaticDirectory([]PilotProfile{
		{CustomerId: "cust-001", Name: "Alice Johnson", Phone: "+15550101", PilotName: "Capt. Smith", PlaneNumber: "N123AJ"},
		{CustomerId: "cust-002", Name: "Bob Williams", Phone: "+15550102", PilotName: "Capt. Doe", PlaneNumber: "N456BW"},
		{CustomerId: "cust-003", Name: "Charlie Brown", Phone: "+15550103", PilotName: "Capt. Peanuts", PlaneNumber: "N789CB"},
		{CustomerId: "cust-004", Name: "Diana Prince", Phone: "+15550104", PilotName: "Capt. Trevor", PlaneNumber: "N999WW"},
		{CustomerId: "cust-005", Name: "Evan Wright", Phone: "+15550105", PilotName: "Capt. Sky", PlaneNumber: "N321EW"},
		{CustomerId: "cust-robin-hood", Name: "Robin Hood", Phone: "+15550199", PilotName: "Capt. Hood", PlaneNumber: "N555RH"},
	})
}

func (d *staticDirectory) LookupPhone(phone string) (PilotProfile, bool) {
	p, ok := d.byPhone[NormalizePhone(phone)]
	return p, ok
}

// NormalizePhone keeps digits and a leading plus sign.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	var sb strings.Builder
	for i, r := range phone {
		if r == '+' && i == 0 {
			sb.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
