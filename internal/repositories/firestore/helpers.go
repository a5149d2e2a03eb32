// Package firestore contains the Firestore-backed implementations of the
// repository contracts.
package firestore

import (
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/platform/pagination"
)

// pageWindow resolves the requested page size and decodes the cursor token
// into the document ID to start after.
func pageWindow(pager domain.Pagination) (int, string, error) {
	size := pagination.ClampPageSize(pager.PageSize)

	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return 0, "", err
	}
	startAfter := ""
	if len(cursor.StartAfter) > 0 {
		value, ok := cursor.StartAfter[0].(string)
		if !ok {
			return 0, "", pagination.ErrInvalidPageToken
		}
		startAfter = value
	}
	return size, startAfter, nil
}

// nextToken encodes the continuation cursor when the query returned a full
// window plus one extra document.
func nextToken(lastID string) (string, error) {
	return pagination.EncodeToken(pagination.Cursor{StartAfter: []any{lastID}})
}

// byIDDescending orders a query by document ID, newest ULIDs first.
func byIDDescending(query firestore.Query) firestore.Query {
	return query.OrderBy(firestore.DocumentID, firestore.Desc)
}

func requireID(kind string, id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", fmt.Errorf("%s repository: id is required", kind)
	}
	return trimmed, nil
}
