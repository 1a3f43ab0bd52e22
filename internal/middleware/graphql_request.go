package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// RequestInfo describes the operation carried by a GraphQL request.
type RequestInfo struct {
	OperationType string
	OperationName string
	// RootFields are the top-level selections, e.g. select_from_users.
	RootFields []string
	Depth      int
}

type requestInfoKey struct{}

// RequestInfoFromContext returns the info stored by GraphQLRequestMiddleware.
func RequestInfoFromContext(ctx context.Context) (*RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(*RequestInfo)
	return info, ok && info != nil
}

// GraphQLRequestMiddleware parses the request once and stores a RequestInfo for
// the metrics and tracing middleware. Unparseable requests pass through untouched
// so the GraphQL handler can report the error.
func GraphQLRequestMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query, operationName := extractGraphQLRequest(r)
			info, err := analyzeQuery(query, operationName)
			if err == nil && info != nil {
				r = r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info))
			}
			next.ServeHTTP(w, r)
		})
	}
}

type graphQLRequest struct {
	Query         string `json:"query"`
	OperationName string `json:"operationName"`
}

func extractGraphQLRequest(r *http.Request) (string, string) {
	if r.Method == http.MethodGet {
		return r.URL.Query().Get("query"), r.URL.Query().Get("operationName")
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return "", ""
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", ""
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if strings.Contains(r.Header.Get("Content-Type"), "application/graphql") {
		return string(body), ""
	}

	var payload graphQLRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", ""
	}
	return payload.Query, payload.OperationName
}

func analyzeQuery(query, operationName string) (*RequestInfo, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(query),
			Name: "graphql",
		}),
	})
	if err != nil {
		return nil, err
	}

	fragments := make(map[string]*ast.FragmentDefinition)
	var target, first *ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.FragmentDefinition:
			fragments[d.Name.Value] = d
		case *ast.OperationDefinition:
			if first == nil {
				first = d
			}
			if operationName != "" && d.Name != nil && d.Name.Value == operationName {
				target = d
			}
		}
	}
	if target == nil && operationName == "" {
		target = first
	}
	if target == nil {
		return nil, nil
	}

	info := &RequestInfo{
		OperationType: string(target.Operation),
		OperationName: operationName,
	}
	if info.OperationName == "" && target.Name != nil {
		info.OperationName = target.Name.Value
	}
	if target.SelectionSet != nil {
		info.RootFields = rootFieldNames(target.SelectionSet, fragments)
		info.Depth = selectionDepth(target.SelectionSet, fragments, map[string]bool{})
	}
	return info, nil
}

func rootFieldNames(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition) []string {
	seen := map[string]bool{}
	var walk func(*ast.SelectionSet, map[string]bool)
	walk = func(set *ast.SelectionSet, expanding map[string]bool) {
		for _, selection := range set.Selections {
			switch sel := selection.(type) {
			case *ast.Field:
				seen[sel.Name.Value] = true
			case *ast.InlineFragment:
				if sel.SelectionSet != nil {
					walk(sel.SelectionSet, expanding)
				}
			case *ast.FragmentSpread:
				name := sel.Name.Value
				frag, ok := fragments[name]
				if !ok || expanding[name] || frag.SelectionSet == nil {
					continue
				}
				expanding[name] = true
				walk(frag.SelectionSet, expanding)
				delete(expanding, name)
			}
		}
	}
	walk(set, map[string]bool{})

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// selectionDepth counts nested field levels. Fragment spreads do not add a level
// and cyclic spreads are expanded once.
func selectionDepth(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, expanding map[string]bool) int {
	if set == nil {
		return 0
	}
	depth := 0
	for _, selection := range set.Selections {
		var d int
		switch sel := selection.(type) {
		case *ast.Field:
			d = 1 + selectionDepth(sel.SelectionSet, fragments, expanding)
		case *ast.InlineFragment:
			d = selectionDepth(sel.SelectionSet, fragments, expanding)
		case *ast.FragmentSpread:
			name := sel.Name.Value
			frag, ok := fragments[name]
			if !ok || expanding[name] {
				continue
			}
			expanding[name] = true
			d = selectionDepth(frag.SelectionSet, fragments, expanding)
			delete(expanding, name)
		}
		if d > depth {
			depth = d
		}
	}
	return depth
}
