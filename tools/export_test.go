package tools

// CheckReadOnly exposes checkReadOnly for tests.
var CheckReadOnly = checkReadOnly
