// Package tier resolves plan rules: allowed transition styles, queue lane,
// monthly quota, and the short-form duration cap. Rules are loaded once from
// configuration and treated as immutable.
package tier
