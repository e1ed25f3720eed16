package repository

import "errors"

// ErrStatusChanged: условный UPDATE ... WHERE status = ? не затронул ни одной строки,
// то есть статус успели поменять параллельно.
var ErrStatusChanged = errors.New("repository: status changed concurrently")
