// Package domain models open-source intelligence (OSINT) news and security
// events collected from RSS feeds.
//
// # Data Source
//
// Events originate from configured RSS/Atom feeds, each assigned to a source
// domain ("geopolitics" for world-news feeds, "cti" for cyber threat
// intelligence feeds). The feed adapter fetches and normalizes entries into
// [RawEntry] records; this package turns them into scored, geo-enriched
// [Event] records.
//
// # Timestamps
//
// Entry timestamps resolve in order: published time, else updated time, else
// ingestion time. All timestamps are normalized to UTC and treated as naive
// instants throughout the pipeline and the store.
//
// # Place Extraction Conventions
//
// Headlines rarely carry structured location data, so candidate place names
// are extracted heuristically from title + summary text:
//
//	"Strikes reported in Eastern Ukraine" → candidate "Eastern Ukraine"
//
// Candidates come from three passes: known multi-word region names found as
// substrings, capitalized sequences following the prepositions in/near/at/from
// (up to four words), and bare capitalized sequences (up to three words). A
// stop list filters weekday names and common headline words ("Breaking",
// "Exclusive") that capitalize like place names. Discovery order is
// significant: the resolver takes the first candidate that matches the
// gazetteer, not the best-scoring one, and region hints are extracted first
// so broad regions win when no city or country resolves earlier.
//
// # Scoring
//
// Two independent heuristics exist behind the [Scorer] interface and are
// deliberately not merged, since call sites choose one or the other:
//
//	KeywordScorer   — severity/confidence from domain keyword density;
//	                  the default for ingestion.
//	WatchlistScorer — priority from recency decay plus configured watchlist
//	                  term hits and trigger-word severity.
//
// All scores are clamped to [0,100].
//
// # ID Generation
//
// Event IDs are deterministic SHA-256 hashes (24 hex chars) over
// domain|source_name|source_url|title|timestamp. Re-ingesting the same
// logical item yields the same ID, which the store uses as the idempotency
// key for its replace-on-conflict upsert. See [GenerateEventID].
package domain
