// Package beatservice owns narrative beats and their challenges. A beat is
// submitted with its embedded events already resolved: dice and fortune
// rolls happen server-side at submit time, and an exceptional fortune
// outcome forces major significance. Minor beats become canon in their
// creating transaction; major beats wait on a beat_approval ballot. Canon
// beats can be challenged, and a challenge that sits open past the game's
// silence window escalates to a challenge_resolution ballot.
package beatservice
