package core

// error_messages.go maps technical errors to coded French messages for the
// people running imports. Codes are quoted to support staff:
//
//	DB001-DB099   storage constraints and connectivity
//	IMP001-IMP099 import file structure and schema
//	RUN001-RUN099 run lifecycle (busy, expired, cancelled)
//	RATE001       request throttling
//	ERR000        anything else; check the logs for the original error
//
// Typed errors are matched first: *StructuralError, *SchemaError,
// *pgconn.PgError by SQLSTATE. Remaining errors are matched
// case-insensitively against errorPatterns; the first match wins.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
	Detail  string // Optional specifics, such as the missing column labels
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgDuplicate = UserMessage{
		Message: "Un enregistrement avec cette valeur existe déjà",
		Action:  "Téléchargez les lignes en erreur pour vérifier les doublons",
		Code:    "DB001",
	}
	msgForeignKey = UserMessage{
		Message: "L'enregistrement référencé n'existe pas",
		Action:  "Importez d'abord les enregistrements parents",
		Code:    "DB003",
	}
	msgNotNull = UserMessage{
		Message: "Une valeur obligatoire est vide",
		Action:  "Complétez les colonnes obligatoires",
		Code:    "DB008",
	}
	msgBadValue = UserMessage{
		Message: "Une valeur n'a pas le format attendu par la base",
		Action:  "Vérifiez les dates et les valeurs numériques",
		Code:    "DB009",
	}
	msgStructure = UserMessage{
		Message: "Le fichier n'a pas pu être lu",
		Action:  "Utilisez le modèle CSV avec une ligne d'en-tête et au moins une ligne de données",
		Code:    "IMP001",
	}
	msgSchema = UserMessage{
		Message: "Des colonnes obligatoires sont absentes",
		Action:  "Ajoutez les colonnes manquantes ou partez du modèle CSV",
		Code:    "IMP002",
	}
	msgPreload = UserMessage{
		Message: "Impossible de lire les enregistrements existants",
		Action:  "Réessayez dans quelques instants",
		Code:    "IMP003",
	}
)

var errorPatterns = []errorPattern{
	// Storage constraints (DB001-DB003)
	{pattern: "duplicate key", msg: msgDuplicate},
	{pattern: "unique constraint", msg: UserMessage{
		Message: "Cette valeur doit être unique mais existe déjà",
		Action:  "Vérifiez les doublons dans votre fichier",
		Code:    "DB002",
	}},
	{pattern: "violates foreign key", msg: msgForeignKey},

	// Connectivity (DB004-DB007)
	{pattern: "connection refused", msg: UserMessage{
		Message: "Connexion à la base de données impossible",
		Action:  "Réessayez dans quelques instants",
		Code:    "DB004",
	}},
	{pattern: "connection reset", msg: UserMessage{
		Message: "La connexion à la base de données a été interrompue",
		Action:  "Réessayez",
		Code:    "DB005",
	}},
	{pattern: "deadlock", msg: UserMessage{
		Message: "La base de données était occupée",
		Action:  "Réessayez",
		Code:    "DB007",
	}},

	// Run lifecycle (RUN001-RUN004)
	{pattern: "too many concurrent imports", msg: UserMessage{
		Message: "Trop d'imports sont en cours",
		Action:  "Patientez un moment puis réessayez",
		Code:    "RUN001",
	}},
	{pattern: "import run not found", msg: UserMessage{
		Message: "Import introuvable",
		Action:  "L'import a peut-être expiré. Relancez-le",
		Code:    "RUN002",
	}},
	{pattern: "context canceled", msg: UserMessage{
		Message: "La requête a été annulée",
		Action:  "Réessayez",
		Code:    "RUN003",
	}},
	{pattern: "context deadline exceeded", msg: UserMessage{
		Message: "Le délai d'attente est dépassé",
		Action:  "Réessayez avec un fichier plus petit",
		Code:    "RUN004",
	}},
	{pattern: "timeout", msg: UserMessage{
		Message: "L'opération a expiré",
		Action:  "Réessayez plus tard",
		Code:    "DB006",
	}},

	// File handling (IMP004-IMP006)
	{pattern: "unknown import kind", msg: UserMessage{
		Message: "Type d'import inconnu",
		Action:  "Choisissez patients ou rendez-vous",
		Code:    "IMP004",
	}},
	{pattern: "no file provided", msg: UserMessage{
		Message: "Aucun fichier sélectionné",
		Action:  "Sélectionnez un fichier CSV",
		Code:    "IMP005",
	}},
	{pattern: "request body too large", msg: UserMessage{
		Message: "Le fichier dépasse la taille maximale",
		Action:  "Divisez le fichier en plusieurs parties",
		Code:    "IMP006",
	}},

	{pattern: "rate limit", msg: UserMessage{
		Message: "Trop de requêtes",
		Action:  "Patientez un moment avant de réessayer",
		Code:    "RATE001",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "Une erreur inattendue est survenue",
	Action:  "Réessayez ou contactez le support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// A nil error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var structural *StructuralError
	if errors.As(err, &structural) {
		msg := msgStructure
		msg.Detail = structural.Reason
		return msg
	}

	var schema *SchemaError
	if errors.As(err, &schema) {
		msg := msgSchema
		msg.Detail = strings.Join(schema.Missing, ", ")
		return msg
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if msg, ok := mapPgCode(pgErr.Code); ok {
			msg.Detail = pgErr.ConstraintName
			return msg
		}
	}

	var storage *StorageError
	if errors.As(err, &storage) {
		if m := matchPattern(storage.Err); m.Code != defaultMessage.Code {
			return m
		}
		return msgPreload
	}

	return matchPattern(err)
}

func matchPattern(err error) UserMessage {
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

func mapPgCode(code string) (UserMessage, bool) {
	switch {
	case code == "23505":
		return msgDuplicate, true
	case code == "23503":
		return msgForeignKey, true
	case code == "23502":
		return msgNotNull, true
	case strings.HasPrefix(code, "22"):
		return msgBadValue, true
	}
	return UserMessage{}, false
}

// FormatUserError creates a formatted error string for display:
// "Message: detail (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	text := msg.Message
	if msg.Detail != "" {
		text += ": " + msg.Detail
	}
	return fmt.Sprintf("%s (Code: %s). %s", text, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
