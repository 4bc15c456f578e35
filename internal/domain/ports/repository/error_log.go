package repository

import (
	"context"

	"github.com/jabinweb/sciocare-sub001/internal/domain/model"
)

type ErrorLogRepository interface {
	Append(ctx context.Context, tx Tx, e *model.ErrorLog) error
	ListRecent(ctx context.Context, tx Tx, limit int) ([]*model.ErrorLog, error)
}
