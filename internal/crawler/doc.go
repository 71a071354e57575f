// Package crawler holds the domain types, error categories, and collaborator
// interfaces shared by the directory and detail stages of the cidades
// pipeline. Concrete adapters (colly fetcher, Pub/Sub queue and publisher,
// GCS/local/memory blob stores, Postgres index) live in sibling packages and
// satisfy the interfaces declared here.
package crawler
