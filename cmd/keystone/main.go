// Command keystone is the process entrypoint: no flags, one config, one
// bootstrap script, run forever.
package main

import (
	"log"

	"github.com/keystonegw/keystone/app"
	"github.com/keystonegw/keystone/config"
)

// bootstrapScript registers the routes every worker's interpreter starts
// with. Real deployments would swap this for whatever routes the
// operator's script defines — loading it from disk is an external
// collaborator's job, out of scope here.
const bootstrapScript = `
keystone.add_route("GET", "/ping", function(ctx)
  ctx.status = 200
  ctx.body = "pong"
end)

keystone.add_route("GET", "/users/{id}", function(ctx)
  ctx.status = 200
  ctx.body = ctx.params.id
end)

keystone.add_route("POST", "/echo", function(ctx)
  ctx.status = 200
  ctx.headers["X-Echoed-From"] = ctx.path
  ctx.body = ctx.body
end)
`

func main() {
	cfg := config.New()

	a, err := app.New(cfg, bootstrapScript)
	if err != nil {
		log.Fatalf("keystone: startup failed: %v", err)
	}

	if err := a.Run(); err != nil {
		log.Fatalf("keystone: %v", err)
	}
}
