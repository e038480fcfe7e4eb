// Package cms defines the narrow collaborator contracts from §6 that
// InliningOrchestrator drives: posts, post-meta, tags and users, each
// exposed through the same small interface shape regardless of backend.
package cms

import "context"

// Resource is one row the orchestrator can read fields from and, after
// inlining media, request an edit against.
type Resource interface {
	ID() string
	Get(field string) (string, bool)
}

// ResourceFilter selects resources for FindAll.
type ResourceFilter struct {
	Internal bool
}

// PageFilter selects a page of resources for FindPage.
type PageFilter struct {
	Limit string // "all" is the only value the orchestrator uses.
}

// Page is one page of resources.
type Page struct {
	Resources []Resource
}

// EditOptions parameterizes a persistence call.
type EditOptions struct {
	ID       string
	Internal bool
}

// PostModel is the collaborator for the Post resource kind.
type PostModel interface {
	FindAll(ctx context.Context, filter ResourceFilter) ([]Resource, error)
	Edit(ctx context.Context, fields map[string]string, opts EditOptions) error
}

// PostMetaModel is the collaborator for the PostMeta resource kind.
type PostMetaModel interface {
	FindPage(ctx context.Context, filter PageFilter) (Page, error)
	Edit(ctx context.Context, fields map[string]string, opts EditOptions) error
}

// TagModel is the collaborator for the Tag resource kind.
type TagModel interface {
	FindPage(ctx context.Context, filter PageFilter) (Page, error)
	Edit(ctx context.Context, fields map[string]string, opts EditOptions) error
}

// UserModel is the collaborator for the User resource kind.
type UserModel interface {
	FindPage(ctx context.Context, filter PageFilter) (Page, error)
	Edit(ctx context.Context, fields map[string]string, opts EditOptions) error
}

// Store bundles all four collaborators the orchestrator needs.
type Store struct {
	Posts     PostModel
	PostsMeta PostMetaModel
	Tags      TagModel
	Users     UserModel
}
