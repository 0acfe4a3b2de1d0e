package entity

import (
	"fbo-callrelay-be/pkg/aviation"
)

// AttachCaller fills in the customer from a caller phone number. It only acts
// while the order has no phone yet and reports whether anything changed.
func (o *Order) AttachCaller(phone string, dir aviation.Directory) bool {
	phone = aviation.NormalizePhone(phone)
	if phone == "" || o.Customer.Phone != "" {
		return false
	}

	o.Customer.Phone = phone
	profile, ok := dir.LookupPhone(phone)
	if !ok {
		return true
	}

	o.CustomerId = profile.CustomerId
	o.Customer.Id = profile.CustomerId
	o.Customer.Name = profile.Name
	o.Customer.PilotName = profile.PilotName
	if o.Customer.PlaneNumber == "" && profile.PlaneNumber != "" {
		o.SetPlaneNumber(profile.PlaneNumber)
	}
	o.IsIdentifying = false
	return true
}

// SetPlaneNumber records the tail number and its aircraft type.
func (o *Order) SetPlaneNumber(tailNumber string) bool {
	if o.Customer.PlaneNumber == tailNumber && o.AircraftType == aviation.AircraftType(tailNumber) {
		return false
	}
	o.Customer.PlaneNumber = tailNumber
	o.AircraftType = aviation.AircraftType(tailNumber)
	return true
}
