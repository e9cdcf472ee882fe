// Package gitstate adds version control state to a target tree.
//
// A target with a git key is expected to be a repository. The key accepts
// true, false, or a mapping:
//
//	git:
//	  main_branch: [develop]
//	  remote:
//	    - name: origin
//	      url: {pattern: "https://github.com/acme/{name}.git"}
//	      create_remote: true
//
// Planning produces up to four operations per target, ordered through their
// dependencies: git.init after the directory exists, then git.create_branch
// and git.remote_add, and finally git.remote_create, which talks to GitHub or
// GitLab with the {KIND}_API_TOKEN env parameter of the target.
package gitstate
