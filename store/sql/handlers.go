package sqlstore

import (
	"maps"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// uuidKeyedHandlers wires repository handlers for a record whose primary key
// is a UUID held as text in the field returned by key.
func uuidKeyedHandlers[T any](key func(*T) *string) repository.ModelHandlers[*T] {
	return repository.ModelHandlers[*T]{
		NewRecord: func() *T {
			return new(T)
		},
		GetID: func(record *T) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			parsed, err := uuid.Parse(strings.TrimSpace(*key(record)))
			if err != nil {
				return uuid.Nil
			}
			return parsed
		},
		SetID: func(record *T, id uuid.UUID) {
			if record != nil {
				*key(record) = id.String()
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *T) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(*key(record))
		},
	}
}

func accessRequestHandlers() repository.ModelHandlers[*accessRequestRecord] {
	return uuidKeyedHandlers(func(record *accessRequestRecord) *string { return &record.ID })
}

func rateLimitStateHandlers() repository.ModelHandlers[*rateLimitStateRecord] {
	return uuidKeyedHandlers(func(record *rateLimitStateRecord) *string { return &record.ID })
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	return maps.Clone(in)
}
