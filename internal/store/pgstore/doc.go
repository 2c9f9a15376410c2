// Package pgstore implements store.Store on Postgres.
//
// SQL is built with goqu and executed through a small adapter layer so the
// store works identically over pgxpool, database/sql and sqlx handles.
// Exclusive row locks (LockCase) are plain SELECT ... FOR UPDATE; the lock is
// released when the surrounding transaction ends.
package pgstore
