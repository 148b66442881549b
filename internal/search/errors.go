package search

import "net/http"

// Error：对外可见的查询错误，Status 为 HTTP 状态码
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

func badRequest(msg string) *Error { return &Error{Status: http.StatusBadRequest, Message: msg} }

var (
	ErrUserNotFound = &Error{
		Status:  http.StatusNotFound,
		Message: "The user ID specified was not found in the database. Please check and try again.",
	}
	ErrTweetNotFound = &Error{
		Status:  http.StatusNotFound,
		Message: "The tweet specified using the tweet ID was not found in the database. Please check and try again.",
	}
	ErrInvalidSortCriterion = badRequest("The sort criterion specified is invalid. If you wish to sort your results, please specify one of 'oldestToNewest', 'newestToOldest' or 'popularity'.")
	ErrNoParameters         = badRequest("No search parameters specified. Please specify one of username_for_user_info, user_id_for_tweets, username_tweets, user_id, tweet_id, keyword, hashtags, location or time_range.")
	ErrTooManyParameters    = badRequest("Too many search parameters specified. Please specify only one of username_for_user_info, user_id_for_tweets, username_tweets, user_id, tweet_id, keyword, hashtags, location or time range.")
	ErrInvalidTimeWindow    = badRequest("Invalid time window. Please provide one of '1 week', '1 month', '3 months', '6 months', '1 year', '5 years' or 'all time'.")
	ErrBadDistance          = badRequest("Bad request. Please check your location or increase the distance and try again.")
)
