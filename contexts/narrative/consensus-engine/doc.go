// Package consensusengine owns the shared proposal and voting workflow.
//
// Any game decision that needs group agreement (beat approvals, scene and act
// transitions, challenge escalations, tension adjustments) flows through a
// Proposal. Resolution is lazy: expiry is evaluated whenever a proposal is
// read or written, so no scheduler is required for correctness. The overdue
// sweep worker exists only to surface auto-approvals promptly as events.
package consensusengine
