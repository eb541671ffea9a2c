// Package resources exposes read-only college data as MCP resources.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/campusevents/server/internal/api/middleware"
	"github.com/campusevents/server/internal/domain/reports"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	CategoriesURI = "campus://categories"
	jsonMIMEType  = "application/json"
)

type CategoryLister interface {
	Categories(ctx context.Context, collegeID int64) ([]reports.Category, error)
}

// CategoryResources serves the category list of one college.
type CategoryResources struct {
	lister    CategoryLister
	collegeID int64
}

func NewCategoryResources(lister CategoryLister, collegeID int64) *CategoryResources {
	return &CategoryResources{lister: lister, collegeID: collegeID}
}

func (r *CategoryResources) Resource() mcp.Resource {
	return mcp.NewResource(
		CategoriesURI,
		"Event categories",
		mcp.WithResourceDescription("Event categories and how many events each holds"),
		mcp.WithMIMEType(jsonMIMEType),
	)
}

func (r *CategoryResources) ReadHandler(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	collegeID := r.collegeID
	if user := middleware.UserFromContext(ctx); user != nil {
		collegeID = user.CollegeID
	}

	categories, err := r.lister.Categories(ctx, collegeID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	body, err := json.Marshal(categories)
	if err != nil {
		return nil, fmt.Errorf("encode categories: %w", err)
	}

	uri := CategoriesURI
	if request.Params.URI != "" {
		uri = request.Params.URI
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: jsonMIMEType,
			Text:     string(body),
		},
	}, nil
}
