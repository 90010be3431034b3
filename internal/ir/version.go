package ir

// EngineVersion is the txsched engine version.
const EngineVersion = "0.1.0"
