// ABOUTME: Package sqlshared holds the query-building logic common to the
// ABOUTME: three read-only SQL dialect adapters (postgres, mysql, mssql).
package sqlshared
