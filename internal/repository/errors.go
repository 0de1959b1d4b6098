package repository

import (
	"fmt"

	"github.com/sratov/TimeBankingBot/internal/repository/common"
)

var (
	ErrUserNotFound         = fmt.Errorf("пользователь: %w", common.ErrNotFound)
	ErrUserExists           = fmt.Errorf("пользователь: %w", common.ErrAlreadyExists)
	ErrListingNotFound      = fmt.Errorf("объявление: %w", common.ErrNotFound)
	ErrTransactionNotFound  = fmt.Errorf("транзакция: %w", common.ErrNotFound)
	ErrFriendshipNotFound   = fmt.Errorf("заявка в друзья: %w", common.ErrNotFound)
	ErrFriendshipExists     = fmt.Errorf("заявка в друзья: %w", common.ErrAlreadyExists)
	ErrFriendshipNotPending = fmt.Errorf("заявка в друзья: %w", common.ErrConflict)
	ErrSessionNotFound      = fmt.Errorf("сессия: %w", common.ErrNotFound)
)
