package postgres

import (
	"context"
	"fmt"

	"github.com/ncsyvn/microservices-go/pkg/database"
)

// PermissionRepository implements repository.PermissionRepository using PostgreSQL.
type PermissionRepository struct {
	db database.DBTX
}

// NewPermissionRepository creates a new PostgreSQL-backed permission repository.
func NewPermissionRepository(db database.DBTX) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// ListByGroup returns the route keys granted to groupID.
func (r *PermissionRepository) ListByGroup(ctx context.Context, groupID string) (_ []string, err error) {
	query := `
		SELECT permission
		FROM group_permissions
		WHERE group_id = $1
		ORDER BY permission`

	ctx, end := database.TraceQuery(ctx, "ListGroupPermissions", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("query group permissions: %w", err)
	}
	defer rows.Close()

	permissions := make([]string, 0)
	for rows.Next() {
		var p string
		if err = rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan group permission: %w", err)
		}
		permissions = append(permissions, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group permissions: %w", err)
	}

	return permissions, nil
}
