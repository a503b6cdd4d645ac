// Package gameservice owns the game aggregate: lifecycle status, the
// consensus-relevant settings, the member roster, and invitation-token
// redemption. Other services read roster and settings through ports served
// by this package.
package gameservice
