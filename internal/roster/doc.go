// Package roster evaluates every pilot of a campaign save for promotion.
//
// A sweep runs once per new campaign date. It resolves each pilot's
// country and rank ceiling, identifies the one pilot controlled by the
// active player, asks the policy for a decision and persists it. Failures
// are isolated per pilot: a pilot whose row cannot be read or written is
// skipped and the sweep continues.
//
// Notifications are collected per sweep and pushed to the sink once the
// sweep is done: AI squadron-mates first, the player's ceremony last. AI
// promotions in other squadrons are applied silently.
package roster
