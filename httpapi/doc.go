// Package httpapi serves the admin login surface over HTTP with gin.
//
// Routes:
//
//	POST   /api/admin/login                       username/password → token + session cookie
//	POST   /api/admin/logout                      clears the session cookie
//	GET    /api/admin/verify                      identity of the presented token
//	POST   /api/admin/password                    change own password
//	GET    /api/admin/admins                      list (super_admin)
//	POST   /api/admin/admins                      create (super_admin)
//	GET    /api/admin/admins/:username            show (super_admin)
//	DELETE /api/admin/admins/:username            remove (super_admin)
//	POST   /api/admin/admins/:username/unlock     clear lockout (super_admin)
//	PUT    /api/admin/admins/:username/role       change role (super_admin)
//	PUT    /api/admin/admins/:username/password   reset password (super_admin)
//	GET    /healthz                               store status
//	GET    /metrics                               Prometheus exposition
//
// Login failures are always answered with the same 401 body; the cause is only logged
// and audited.
package httpapi
