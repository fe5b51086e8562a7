package builder

// Mapped exposes the strategy table check to external tests.
var Mapped = mapped
