package controllers

import (
	"github.com/google/uuid"

	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
)

func parseUUIDParam(raw, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return id, nil
}
