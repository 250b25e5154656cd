// ABOUTME: Names of the catalog keys referenced from code
// ABOUTME: Labels looked up by status or type value are not listed here

package i18n

const (
	KeyHelp              = "help_message"
	KeyChooseLanguage    = "lang_choose"
	KeyStart             = "start_message"
	KeySearchChoose      = "search_choose_question"
	KeySearchGlobal      = "global"
	KeySearchLocal       = "local"
	KeyInvalidInput      = "message_error"
	KeySearching         = "searching_please_wait"
	KeyNothingFound      = "nothing_found_query"
	KeyFoundResults      = "found_results"
	KeyFeatureDeveloping = "feature_developing"
	KeyPageOf            = "page_of_total_pages"
	KeyFilter            = "change_entity_type"
	KeyCancel            = "cancel"
	KeyBack              = "back"
	KeyAddToList         = "add_to_list"
	KeySelectStatus      = "select_status_type_for"
	KeyAdded             = "entity_added_to_list"
	KeyListEmpty         = "user_list_empty"
	KeyListEmptyStatus   = "user_list_empty_status"
	KeyListTitle         = "user_list_title"
	KeyRating            = "rating"
	KeyRuntime           = "runtime"
	KeySeasons           = "seasons"
	KeyGenre             = "genre"
	KeyCountry           = "country"
	KeyDirector          = "director"
	KeyActors            = "actors"
	KeyMinutes           = "min"
	KeySetRating         = "set_rating"
	KeyUserRating        = "user_rating"
	KeySetSeason         = "set_season"
	KeyUserSeason        = "user_season"
	KeySetStatus         = "set_status"
	KeyDelete            = "delete"
	KeyYes               = "yes"
	KeyNo                = "no"
	KeyClean             = "clean"
	KeyConfirm           = "confirm"
	KeyAskRating         = "ask_rating"
	KeyAskSeason         = "ask_season"
	KeyAskStatus         = "ask_status"
	KeyAskDelete         = "ask_delete"
	KeyDeleted           = "entity_deleted"
	KeyAlreadyAdded      = "already_added"
	KeyUnknownCommand    = "unknown_command"
	KeyError             = "error_message"
	KeyErrorResults      = "error_getting_results"
	KeyErrorEntity       = "error_getting_entity"
	KeyChangeLanguage    = "change_language"
	KeyShareList         = "share_list"
	KeyProfile           = "profile_message"
	KeyViewInBot         = "entity_share_link_text"
)
