package account

import (
	"strings"
	"time"
)

// Kind discriminates the account variant.
type Kind string

const (
	KindUser     Kind = "user"
	KindHospital Kind = "hospital"
)

// Kinds lists every kind in lookup order.
var Kinds = []Kind{KindUser, KindHospital}

// ParseKind accepts "user" or "hospital" in any case.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindUser:
		return KindUser, nil
	case KindHospital:
		return KindHospital, nil
	}
	return "", ErrInvalidKind
}

// Title is the capitalised kind name used in user-facing messages.
func (k Kind) Title() string {
	switch k {
	case KindUser:
		return "User"
	case KindHospital:
		return "Hospital"
	}
	return string(k)
}

// Address is a postal address. PostalCode is the Indian pincode.
type Address struct {
	Street     string `json:"street" bson:"street"`
	City       string `json:"city" bson:"city"`
	State      string `json:"state" bson:"state"`
	PostalCode string `json:"postalCode" bson:"postalCode"`
}

// UserProfile holds patient attributes.
type UserProfile struct {
	Name           string    `json:"name" bson:"name"`
	Phone          string    `json:"phone" bson:"phone"`
	DateOfBirth    time.Time `json:"dob" bson:"dob"`
	Gender         string    `json:"gender" bson:"gender"`
	Address        Address   `json:"address" bson:"address"`
	MedicalHistory []string  `json:"medicalHistory" bson:"medicalHistory"`
}

// HospitalProfile holds hospital attributes. Latitude and Longitude are zero
// until geocoding is introduced.
type HospitalProfile struct {
	Name              string   `json:"name" bson:"name"`
	Phone             string   `json:"phone" bson:"phone"`
	Website           string   `json:"website,omitempty" bson:"website,omitempty"`
	Departments       []string `json:"department" bson:"department"`
	AvailableServices []string `json:"availableServices" bson:"availableServices"`
	Address           Address  `json:"address" bson:"address"`
	Latitude          float64  `json:"lat" bson:"lat"`
	Longitude         float64  `json:"long" bson:"long"`
}

// Account is a registered identity. Exactly one of User and Hospital is set,
// matching Kind.
//
// OTP and OTPExpiry are either both set or both empty. Secrets never appear
// in the JSON form; stores persist them through their own record types.
//
// Revision counts successful updates. Store.Update only accepts a record
// whose Revision matches the stored one.
type Account struct {
	ID           string           `json:"id" bson:"_id"`
	Kind         Kind             `json:"type" bson:"type"`
	Email        string           `json:"email" bson:"email"`
	PasswordHash string           `json:"-" bson:"password"`
	OTP          string           `json:"-" bson:"otp,omitempty"`
	OTPExpiry    *time.Time       `json:"-" bson:"otpExpiry,omitempty"`
	User         *UserProfile     `json:"user,omitempty" bson:"user,omitempty"`
	Hospital     *HospitalProfile `json:"hospital,omitempty" bson:"hospital,omitempty"`
	CreatedAt    time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt" bson:"updatedAt"`
	Revision     int64            `json:"-" bson:"revision"`
}

// Name returns the profile display name.
func (a *Account) Name() string {
	switch {
	case a.User != nil:
		return a.User.Name
	case a.Hospital != nil:
		return a.Hospital.Name
	}
	return ""
}

// Phone returns the profile contact number.
func (a *Account) Phone() string {
	switch {
	case a.User != nil:
		return a.User.Phone
	case a.Hospital != nil:
		return a.Hospital.Phone
	}
	return ""
}

// HasChallenge reports whether a reset code is pending.
func (a *Account) HasChallenge() bool {
	return a.OTP != "" && a.OTPExpiry != nil
}

// SetChallenge stores code and expiry together.
func (a *Account) SetChallenge(code string, expiresAt time.Time) {
	exp := expiresAt
	a.OTP = code
	a.OTPExpiry = &exp
}

// ClearChallenge removes any pending code.
func (a *Account) ClearChallenge() {
	a.OTP = ""
	a.OTPExpiry = nil
}

// Clone returns a deep copy so callers can mutate without racing stores that
// hand out shared pointers.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	if a.OTPExpiry != nil {
		exp := *a.OTPExpiry
		out.OTPExpiry = &exp
	}
	if a.User != nil {
		u := *a.User
		u.MedicalHistory = append([]string(nil), a.User.MedicalHistory...)
		out.User = &u
	}
	if a.Hospital != nil {
		h := *a.Hospital
		h.Departments = append([]string(nil), a.Hospital.Departments...)
		h.AvailableServices = append([]string(nil), a.Hospital.AvailableServices...)
		out.Hospital = &h
	}
	return &out
}
