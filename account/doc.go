// Package account persists the two identity kinds, patients (User) and
// hospitals (Hospital), behind one tagged Account record.
//
// Email addresses are unique across both kinds. Every [Store] enforces that at
// insert time so two concurrent registrations of one address cannot both win.
// [Registry] layers validation and credential hashing on top of a Store.
package account
