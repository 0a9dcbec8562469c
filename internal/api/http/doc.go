// Package http exposes the bundle update manager as a JSON API.
//
// Routes:
//
//	GET    /api/bundles                 list versions
//	GET    /api/bundles/status          activation state
//	POST   /api/bundles                 save a payload
//	POST   /api/bundles/:version/use    activate (?defer=true skips reload)
//	POST   /api/bundles/activate        reload the host from the active version
//	POST   /api/bundles/:version/good   confirm the active version
//	DELETE /api/bundles/:version        delete a version
//	POST   /api/bundles/prune           delete everything but base, active and previous
//	POST   /api/bundles/rollback        re-activate the previous version
//
// Unknown or unsafe version identifiers are accepted and ignored. Extraction
// failures map to 400, incompatible versions to 409, persistence failures to
// 500 and host notification failures to 502.
package http
