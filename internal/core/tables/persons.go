package tables

import (
	"errors"

	"github.com/JonMunkholm/clinicimport/internal/core"
)

var errPersonName = errors.New("Prénom et nom sont requis")

var personStatuses = map[string]string{
	"actif":    "active",
	"active":   "active",
	"a":        "active",
	"inactif":  "inactive",
	"inactive": "inactive",
	"i":        "inactive",
	"archive":  "archived",
	"archived": "archived",
}

// Persons returns the patient import definition.
func Persons() core.Definition {
	isStatus, toStatus := enum(personStatuses, "active")

	return core.Definition{
		Kind:  core.KindPersons,
		Label: "Patients",
		Table: "patients",
		Dedup: true,
		Fields: []core.CanonicalField{
			{Label: "Prénom", StorageKey: core.FieldFirstName, Required: true, Aliases: []string{"first name", "given name", "firstname"}},
			{Label: "Nom", StorageKey: core.FieldLastName, Required: true, Aliases: []string{"last name", "surname", "family name", "nom de famille"}},
			{Label: "Email", StorageKey: core.FieldEmail, Aliases: []string{"courriel", "e-mail", "mail"}, Validate: IsEmail, Transform: NormalizeEmail},
			{Label: "Téléphone", StorageKey: "phone", Aliases: []string{"phone", "tel", "cellulaire", "mobile"}, Validate: IsPhone, Transform: NormalizePhone},
			{Label: "Date de naissance", StorageKey: "date_of_birth", Aliases: []string{"date of birth", "birth date", "dob", "naissance"}, Validate: IsBirthDate, Transform: ToBirthDate},
			{Label: "Statut", StorageKey: "status", Aliases: []string{"status"}, Validate: isStatus, Transform: toStatus},
			{Label: "Adresse", StorageKey: "address", Aliases: []string{"address"}},
			{Label: "Notes", StorageKey: "notes", Aliases: []string{"note", "commentaires", "comments"}},
		},
		CheckRecord: func(rec core.Record) error {
			if !present(rec, core.FieldFirstName) || !present(rec, core.FieldLastName) {
				return errPersonName
			}
			return nil
		},
		Example: []string{
			"Marie", "Tremblay", "marie.tremblay@example.com", "514-555-0134",
			"1985-03-14", "actif", "1200 rue Sainte-Catherine, Montréal", "Allergie à la pénicilline",
		},
	}
}

// present reports whether key holds a non-empty value.
func present(rec core.Record, key string) bool {
	v, ok := rec[key]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString {
		return s != ""
	}
	return true
}
