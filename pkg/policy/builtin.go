package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		remoteHTTPSOnlyPolicy(),
		noRootRemoteCreatePolicy(),
	}
}

// remoteHTTPSOnlyPolicy rejects remotes reached over plain http.
func remoteHTTPSOnlyPolicy() Policy {
	return Policy{
		Name:        "remote-https-only",
		Description: "Remotes must not use plain http URLs",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"remote", "security"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package froyo.policies.remote_https

deny contains violation if {
	some op in input.plan.operations
	some r in op.remotes
	startswith(lower(r.url), "http://")
	violation := {
		"message": sprintf("remote %s uses plain http: %s", [r.name, r.url]),
		"target": op.target,
	}
}
`,
	}
}

// noRootRemoteCreatePolicy flags platform repositories created for the root
// of the tree, which is usually a workspace rather than a project.
func noRootRemoteCreatePolicy() Policy {
	return Policy{
		Name:        "no-root-remote-create",
		Description: "The root directory should not create a remote repository",
		Severity:    SeverityWarning,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"remote"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package froyo.policies.root_remote

deny contains violation if {
	some op in input.plan.operations
	op.kind == "git.remote_create"
	op.target == input.plan.root
	some r in op.remotes
	r.create
	violation := {
		"message": sprintf("root directory %s creates remote repository %s", [op.target, r.url]),
		"target": op.target,
	}
}
`,
	}
}
