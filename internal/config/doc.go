// Package config loads the eagraph policy file and watches it for changes.
//
// A file looks like:
//
//	governance:
//	  mode: Strict
//	  lifecycleCoverage: AsIs
//	rules:
//	  path: endpoints.cue
//	history:
//	  limit: 50
//	archive:
//	  path: baselines.db
//	metrics:
//	  namespace: eagraph
//
// Every key is optional; missing keys keep Default values. Unknown keys are
// an error.
package config
