package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func kvHandlers() repository.ModelHandlers[*kvRecord] {
	return repository.ModelHandlers[*kvRecord]{
		NewRecord: func() *kvRecord {
			return &kvRecord{}
		},
		GetID: func(record *kvRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *kvRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "entry_key"
		},
		GetIdentifierValue: func(record *kvRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.Key)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
