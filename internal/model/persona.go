package model

// Persona is the recipient archetype used to steer generation tone.
type Persona string

const (
	PersonaBuyer        Persona = "buyer"
	PersonaSeller       Persona = "seller"
	PersonaInvestor     Persona = "investor"
	PersonaPastClient   Persona = "past_client"
	PersonaReferral     Persona = "referral"
	PersonaColdProspect Persona = "cold_prospect"
)

var Personas = []Persona{
	PersonaBuyer,
	PersonaSeller,
	PersonaInvestor,
	PersonaPastClient,
	PersonaReferral,
	PersonaColdProspect,
}

func (p Persona) Valid() bool {
	for _, known := range Personas {
		if p == known {
			return true
		}
	}
	return false
}
