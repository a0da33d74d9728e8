/*
Package types defines the data shared across genepredict.

# Overview

  - HttpRequest / RequestResult: one raw API call and its response
  - Session: the persisted bearer token and client flags
  - InputPayload: expression values or a CSV file, never both
  - PredictionResult: the server's JSON object, kept verbatim
  - RequestState: Idle, Loading, Success or Failed for the latest submission
  - HistoryEntry: a record returned by GET /history
  - Submission: a completed submit cycle stored in the local log

Values encodes non-finite numbers as JSON null so that a lenient parse of
"1,abc" reaches the server the same way the browser client sent it.
*/
package types
