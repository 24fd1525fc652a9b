package application

import (
	"strconv"

	"github.com/example/speednet/internal/cache"
)

const (
	listNamespace    = "sessions:list"
	runtimeNamespace = "sessions:runtime"
	allCompanies     = "_all"
)

func listCacheKey(params ListSessionsParams) string {
	company := params.CompanyID
	if company == "" {
		company = allCompanies
	}
	shape := cache.Hash(params.Status, strconv.Itoa(params.LookbackDays), strconv.FormatBool(params.UpcomingOnly))
	return cache.Key(listNamespace, company, shape, cache.ScopeFingerprint(params.Principal.WorkspaceIDs))
}

func runtimeCacheKey(principal Principal, sessionID string) string {
	return cache.Key(runtimeNamespace, sessionID, cache.ScopeFingerprint(principal.WorkspaceIDs))
}

// invalidationPrefixes lists every prefix a committed write to the session
// must clear: the owning company's listings, the cross-company listings, and
// the session's runtime snapshots.
func invalidationPrefixes(companyID, sessionID string) []string {
	prefixes := []string{
		cache.Key(listNamespace, allCompanies) + cache.Separator,
	}
	if companyID != "" {
		prefixes = append(prefixes, cache.Key(listNamespace, companyID)+cache.Separator)
	}
	if sessionID != "" {
		prefixes = append(prefixes, cache.Key(runtimeNamespace, sessionID)+cache.Separator)
	}
	return prefixes
}
