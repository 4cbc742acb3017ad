// Package exposure implements the exposure-level coordination core.
//
// The exposure level is a single process-wide integer in [1,5] derived
// from the statuses of the currently connected Wi-Fi clients: how many
// are Online and how many are Cloud-Connected. The engine keeps three
// outputs consistent with that level (the LED bar, the motorized
// physical dial, and every connected UI session) while accepting level
// changes from three independent inputs:
//
//   - rotary encoder rotation and presses (user's hand on the dial)
//   - direct API writes (dashboard slider)
//   - status changes to individual devices (re-derivation)
//
// # Bidirectionality
//
// Level and statuses drive each other. A status write re-derives the
// level (Recompute); a level write redistributes statuses
// (RebalancePlan). The two directions are deliberately not exact
// inverses for levels 2 and 3; see RebalancePlan. Tests pin the
// observed behaviour.
//
// # Feedback suppression
//
// When the engine moves the dial motor itself, the encoder on the same
// axis sees that motion. A guard window sized from the motor step
// duration plus a configured margin suppresses rotate input until the
// motion has finished, so the motor cannot chase its own tail.
//
// All level and guard mutations sit behind one mutex, and every
// operation finishes its side effects (registry writes, LED state)
// before broadcasting to sessions.
package exposure
