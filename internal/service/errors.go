package service

import "errors"

var (
	ErrNotFound     = errors.New("запись не найдена")
	ErrInvalidInput = errors.New("некорректные данные")
)
