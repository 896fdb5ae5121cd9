// Package place holds the record types shared by the redirect builder, the
// discovery matcher and the store.
package place
