// Package harness runs persistence scenarios against a real engine.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	identity: player-1
//	world:
//	  profile: { score: 42, coins: 7, avatar: "hi", title: "Rookie" }
//	  enemies:
//	    - { hp: 10, speed: 1.5, tag: orc }
//	steps:
//	  - op: save_auto
//	    name: slot1
//	  - op: reset
//	  - op: load_auto
//	    name: slot1
//	    expect: { written: 6 }
//	  - op: sign_out
//	  - op: cloud_save
//	    expect: { error: NOT_AUTHENTICATED }
//	assertions:
//	  - type: world_field
//	    field: profile.score
//	    equals: 42
//	  - type: file_exists
//	    name: slot1
//
// The world is a fixed set of host objects: one Profile and any number of
// Enemy instances, registered as live types on a fresh registry per run.
// Steps run on the primary context.
//
// # Operations
//
//   - save_auto, load_auto: aggregate save and load of the world
//   - save_encrypted, load_encrypted: encrypted save of value, and load
//   - delete: remove a local save
//   - reset: zero every world object in place
//   - cloud_save, cloud_load, cloud_apply, cloud_delete: remote store
//   - sign_in, sign_out: session state
//
// # Assertion Types
//
//   - world_field: a world value after the last step
//   - file_exists, file_missing: local save presence
//   - cloud_key: a key in the identity's remote namespace
//
// Every run uses its own directory and SQLite file, the identity from the
// scenario, and fixed encryption material, so traces are reproducible and
// can be compared against golden files.
package harness
