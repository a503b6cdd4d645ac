// Package pacingservice owns the act and scene structure of a game: both
// move through proposed, active and complete, and every transition is
// ratified by a consensus proposal. The service also runs the tension loop:
// completing a scene opens (or, in ai_auto games, immediately applies) a
// tension adjustment whose winning delta lands in the completed scene's
// carry-forward, which seeds the next scene's default tension.
package pacingservice
