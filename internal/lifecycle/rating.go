package lifecycle

import "github.com/Leganyst/consultation-platform/internal/apperr"

const (
	MinRating = 1
	MaxRating = 5
)

// RatingTotals: агрегаты рейтинга консультации.
type RatingTotals struct {
	Sum   int64
	Votes int64
}

func (t RatingTotals) Average() float64 {
	if t.Votes <= 0 {
		return 0
	}
	return float64(t.Sum) / float64(t.Votes)
}

func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return apperr.Newf(apperr.CodeValidation, "rating must be between %d and %d", MinRating, MaxRating).
			WithMetadata("field", "rating")
	}
	return nil
}

// ApplyRating ставит или заменяет оценку бронирования. Замена не меняет Votes.
func ApplyRating(t RatingTotals, previous *int, rating int) (RatingTotals, error) {
	if err := ValidateRating(rating); err != nil {
		return t, err
	}
	if previous == nil {
		return RatingTotals{Sum: t.Sum + int64(rating), Votes: t.Votes + 1}, nil
	}
	return RatingTotals{Sum: t.Sum + int64(rating-*previous), Votes: t.Votes}, nil
}

// RemoveRating снимает оценку. Без оценки: NotFound и агрегаты не трогаем.
func RemoveRating(t RatingTotals, previous *int) (RatingTotals, error) {
	if previous == nil {
		return t, apperr.New(apperr.CodeNotFound, "booking has no rating")
	}
	votes := t.Votes - 1
	if votes < 0 {
		votes = 0
	}
	return RatingTotals{Sum: t.Sum - int64(*previous), Votes: votes}, nil
}
