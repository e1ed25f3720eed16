package model

import "github.com/google/uuid"

// ensureID проставляет uuid до INSERT, чтобы не зависеть от gen_random_uuid()
// (sqlite и mysql его не знают).
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
