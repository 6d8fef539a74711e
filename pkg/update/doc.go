/*
Package update implements moldb's update operators ($set, $unset,
$inc, $push, $pull, $rename) as pure functions over bsoncore.Document,
plus a dispatcher that applies a whole update specification in the
fixed order spec.md §4.3 requires.

Classifying an update document as operator-style ("$set": {...}) versus
a plain replacement document follows the same top-level "$"-prefix
check as kinfkong-modern-mgo's hasUpdateOperators/wrapInSetOperator,
generalized here into IsOperatorSpec.
*/
package update
