// Package policy guards plans with Open Policy Agent rules.
//
// A plan is converted to a PolicyInput and every enabled policy's deny set
// is evaluated against it:
//
//	{
//	  "plan": {
//	    "id": "...", "root": "/src", "dry_run": false,
//	    "operations": [
//	      {"seq": 1, "kind": "git.remote_add", "scope": "location",
//	       "target": "/src/app", "description": "...",
//	       "remotes": [{"name": "origin", "url": "https://...", "kind": "github", "create": false}]}
//	    ]
//	  },
//	  "context": {"operation": "apply", "timestamp": "..."}
//	}
//
// Deny entries are either message strings or objects with message, target
// and an optional severity overriding the policy's. Violations of severity
// error or critical block apply.
//
// Policies are written in Rego v1 syntax:
//
//	package custom.hosts
//
//	deny contains v if {
//		some op in input.plan.operations
//		some r in op.remotes
//		not startswith(r.url, "https://git.example.com/")
//		v := {"message": sprintf("foreign remote %s", [r.url]), "target": op.target}
//	}
//
// Two policies are built in: remote-https-only (error) and
// no-root-remote-create (warning). More are loaded from .rego files, JSON
// policy files or JSON bundles with Engine.LoadPolicies, and Loader.Watch
// reloads them when they change.
package policy
