package feature

// LocaleID identifies a locale in targeting rules and evaluation contexts,
// e.g. "en-US". Matching is exact string equality; no BCP 47 fallback chains.
type LocaleID string

// PlatformID identifies a client platform, e.g. "IOS" or "ANDROID".
type PlatformID string

// AxisID names a custom targeting dimension. Axis identity is always
// explicit: there is no type-derived or auto-registered axis naming.
type AxisID string

// AxisValueID identifies one selectable value within an axis.
type AxisValueID string
