package model

// Profile is the sending user's identity, read at generation and finalize time.
type Profile struct {
	OwnerID     string `db:"owner_id" json:"owner_id"`
	DisplayName string `db:"display_name" json:"display_name"`
	CompanyName string `db:"company_name" json:"company_name"`
	Signature   string `db:"signature" json:"signature"`
}
