package tables

import (
	"errors"

	"github.com/JonMunkholm/clinicimport/internal/core"
)

var errEventFields = errors.New("Nom, email, téléphone et motif sont requis")

var eventStatuses = map[string]string{
	"planifie":  "scheduled",
	"prevu":     "scheduled",
	"scheduled": "scheduled",
	"confirme":  "confirmed",
	"confirmed": "confirmed",
	"annule":    "cancelled",
	"cancelled": "cancelled",
	"canceled":  "cancelled",
	"complete":  "completed",
	"termine":   "completed",
	"completed": "completed",
	"absent":    "no_show",
	"no_show":   "no_show",
}

// Events returns the appointment import definition.
func Events() core.Definition {
	isStatus, toStatus := enum(eventStatuses, "scheduled")

	return core.Definition{
		Kind:  core.KindEvents,
		Label: "Rendez-vous",
		Table: "appointments",
		Fields: []core.CanonicalField{
			{Label: "Nom", StorageKey: "name", Required: true, Aliases: []string{"name", "patient", "nom complet"}},
			{Label: "Email", StorageKey: core.FieldEmail, Required: true, Aliases: []string{"courriel", "e-mail", "mail"}, Validate: IsEmail, Transform: NormalizeEmail},
			{Label: "Téléphone", StorageKey: "phone", Required: true, Aliases: []string{"phone", "tel", "cellulaire", "mobile"}, Validate: IsPhone, Transform: NormalizePhone},
			{Label: "Motif", StorageKey: "reason", Required: true, Aliases: []string{"reason", "raison", "objet"}},
			{Label: "Date", StorageKey: "scheduled_date", Aliases: []string{"jour", "day"}, Validate: IsDate, Transform: ToDate},
			{Label: "Heure", StorageKey: "scheduled_time", Aliases: []string{"time", "hour"}, Validate: IsClock, Transform: ToClock},
			{Label: "Statut", StorageKey: "status", Aliases: []string{"status"}, Validate: isStatus, Transform: toStatus},
			{Label: "Notes", StorageKey: "notes", Aliases: []string{"note", "commentaires", "comments"}},
		},
		CheckRecord: func(rec core.Record) error {
			for _, key := range []string{"name", core.FieldEmail, "phone", "reason"} {
				if !present(rec, key) {
					return errEventFields
				}
			}
			return nil
		},
		Example: []string{
			"Marie Tremblay", "marie.tremblay@example.com", "514-555-0134", "Consultation annuelle",
			"2025-06-12", "14:30", "confirmé", "Apporter la carte d'assurance maladie",
		},
	}
}
